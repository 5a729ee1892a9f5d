package domain

import "time"

const (
	EventNameChallengeCreated   = "challenge.created"
	EventNameChallengeSolved    = "challenge.solved"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventChallengeCreated struct {
	Challenge Challenge
}

func (EventChallengeCreated) Name() string { return EventNameChallengeCreated }

type EventChallengeSolved struct {
	Mode      GameMode
	Challenge int64
	Player    string
	Score     ScoreBreakdown
	SolvedAt  time.Time
}

func (EventChallengeSolved) Name() string { return EventNameChallengeSolved }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
