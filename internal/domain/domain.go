package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// GameMode namespaces every challenge, queue and faucet. Modes never share state.
type GameMode string

const (
	ModeClassic  GameMode = "classic"
	ModeHardcore GameMode = "hardcore"
)

var Modes = []GameMode{ModeClassic, ModeHardcore}

func (m GameMode) Valid() bool {
	return slices.Contains(Modes, m)
}

// Challenge is one puzzle with a single secret word.
type Challenge struct {
	Mode      GameMode
	Number    int64
	Secret    string
	PostID    string
	CreatedAt time.Time
	Stats     Stats
}

// Stats are the aggregate counters of a challenge, only ever changed by atomic increments.
type Stats struct {
	Players int64
	Solves  int64
	Guesses int64
	Hints   int64
	GiveUps int64
}

// Counter names a field of Stats.
type Counter string

const (
	CounterPlayers Counter = "players"
	CounterSolves  Counter = "solves"
	CounterGuesses Counter = "guesses"
	CounterHints   Counter = "hints"
	CounterGiveUps Counter = "give_ups"
)

var Counters = []Counter{CounterPlayers, CounterSolves, CounterGuesses, CounterHints, CounterGiveUps}

type PlayerStatus string

const (
	StatusNotStarted PlayerStatus = "NOT_STARTED"
	StatusPlaying    PlayerStatus = "PLAYING"
	StatusSolved     PlayerStatus = "SOLVED"
	StatusGaveUp     PlayerStatus = "GAVE_UP"
)

func (s PlayerStatus) Terminal() bool {
	return s == StatusSolved || s == StatusGaveUp
}

// PlayerState is one player's progress in one challenge.
type PlayerState struct {
	Player    string          `json:"player"`
	Guesses   []Guess         `json:"guesses"`
	Hints     []Hint          `json:"hints,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	SolvedAt  *time.Time      `json:"solved_at,omitempty"`
	GaveUpAt  *time.Time      `json:"gave_up_at,omitempty"`
	Score     *ScoreBreakdown `json:"score,omitempty"`
}

func (p *PlayerState) Status() PlayerStatus {
	switch {
	case p == nil:
		return StatusNotStarted
	case p.SolvedAt != nil:
		return StatusSolved
	case p.GaveUpAt != nil:
		return StatusGaveUp
	default:
		return StatusPlaying
	}
}

func (p *PlayerState) HasGuessed(word string) bool {
	if p == nil {
		return false
	}

	return slices.ContainsFunc(p.Guesses, func(g Guess) bool { return g.Word == word })
}

func (p *PlayerState) HasRevealed(word string) bool {
	if p == nil {
		return false
	}

	return slices.ContainsFunc(p.Hints, func(h Hint) bool { return h.Word == word })
}

// Unranked marks a guess outside the secret's similar-words list.
const Unranked = -1

type Guess struct {
	Word       string    `json:"word"`
	Similarity float64   `json:"similarity"`
	Normalized int       `json:"normalized"`
	Rank       int       `json:"rank"`
	Timestamp  time.Time `json:"timestamp"`
}

type Hint struct {
	Word       string    `json:"word"`
	Similarity float64   `json:"similarity"`
	Normalized int       `json:"normalized"`
	Rank       int       `json:"rank"`
	Timestamp  time.Time `json:"timestamp"`
}

// ScoreBreakdown is the final score of a solve and how it was made up.
type ScoreBreakdown struct {
	SolveTimeMs       int64           `json:"solve_time_ms"`
	GuessCount        int             `json:"guess_count"`
	HintCount         int             `json:"hint_count"`
	SolvingBonus      int64           `json:"solving_bonus"`
	TimeBonus         int64           `json:"time_bonus"`
	TimeOptimal       bool            `json:"time_optimal"`
	GuessBonus        int64           `json:"guess_bonus"`
	GuessesOptimal    bool            `json:"guesses_optimal"`
	BaseScore         int64           `json:"base_score"`
	PenaltyMultiplier decimal.Decimal `json:"penalty_multiplier"`
	FinalScore        int64           `json:"final_score"`
}

// SimilarWord is one entry of a word's nearest-words list.
type SimilarWord struct {
	Word       string  `json:"word" validate:"required"`
	Similarity float64 `json:"similarity" validate:"gte=-1,lte=1"`
}

// WordConfig describes the neighbourhood of a secret word.
type WordConfig struct {
	Word               string        `json:"word" validate:"required"`
	ClosestWord        string        `json:"closest_word" validate:"required"`
	ClosestSimilarity  float64       `json:"closest_similarity" validate:"gte=-1,lte=1"`
	FurthestWord       string        `json:"furthest_word" validate:"required"`
	FurthestSimilarity float64       `json:"furthest_similarity" validate:"gte=-1,lte=1"`
	SimilarWords       []SimilarWord `json:"similar_words" validate:"required,min=1,dive"`
}

// Comparison is the similarity of a guess to a secret word.
type Comparison struct {
	Similarity float64 `json:"similarity" validate:"gte=-1,lte=1"`
	GuessLemma string  `json:"guess_lemma" validate:"required"`
}

// QueueItem is a pending challenge definition.
type QueueItem struct {
	Word string `json:"word" validate:"required,min=2,max=32,alpha,lowercase"`
}

// Streak counts consecutive solved challenges.
type Streak struct {
	Player        string `json:"player"`
	Count         int64  `json:"count"`
	LastChallenge int64  `json:"last_challenge"`
}

// Result is an archived solve.
type Result struct {
	Mode       GameMode
	Challenge  int64
	Player     string
	FinalScore int64
	Guesses    int
	Hints      int
	SolveTime  time.Duration
	SolvedAt   time.Time
}

// Leaderboard is the winners circle of a challenge, sorted by score in descending order.
type Leaderboard struct {
	Mode      GameMode
	Challenge int64
	Entries   []LeaderboardEntry
}

type LeaderboardEntry struct {
	Player string
	Score  float64
}
