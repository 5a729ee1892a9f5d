// Package keyspace derives every Redis key used by the game. Services never format keys themselves.
package keyspace

import (
	"fmt"

	"github.com/victornm/hotcold/internal/domain"
)

type Keyspace struct {
	prefix string
}

func New(prefix string) Keyspace {
	return Keyspace{prefix: prefix}
}

// ChallengeCounter holds the number of the most recently minted challenge.
func (k Keyspace) ChallengeCounter(m domain.GameMode) string {
	return fmt.Sprintf("%s:%s:challenge:counter", k.prefix, m)
}

// CurrentChallenge points at the challenge players are sent to by default.
func (k Keyspace) CurrentChallenge(m domain.GameMode) string {
	return fmt.Sprintf("%s:%s:challenge:current", k.prefix, m)
}

func (k Keyspace) Challenge(m domain.GameMode, n int64) string {
	return fmt.Sprintf("%s:%s:challenge:%d", k.prefix, m, n)
}

func (k Keyspace) Player(m domain.GameMode, n int64, player string) string {
	return fmt.Sprintf("%s:%s:challenge:%d:player:%s", k.prefix, m, n, player)
}

func (k Keyspace) Tokens(m domain.GameMode, n int64) string {
	return fmt.Sprintf("%s:%s:challenge:%d:tokens", k.prefix, m, n)
}

func (k Keyspace) Winners(m domain.GameMode, n int64) string {
	return fmt.Sprintf("%s:%s:challenge:%d:winners", k.prefix, m, n)
}

func (k Keyspace) WinnersPublishLock(m domain.GameMode, n int64) string {
	return fmt.Sprintf("%s:%s:challenge:%d:winners:time", k.prefix, m, n)
}

func (k Keyspace) WinnersPublishPending(m domain.GameMode, n int64) string {
	return fmt.Sprintf("%s:%s:challenge:%d:winners:pending", k.prefix, m, n)
}

func (k Keyspace) Queue(m domain.GameMode) string {
	return fmt.Sprintf("%s:%s:queue", k.prefix, m)
}

// WordIndex maps secret words to the challenge number they backed.
func (k Keyspace) WordIndex(m domain.GameMode) string {
	return fmt.Sprintf("%s:%s:index:words", k.prefix, m)
}

// PostIndex maps announcement post IDs to challenge numbers.
func (k Keyspace) PostIndex(m domain.GameMode) string {
	return fmt.Sprintf("%s:%s:index:posts", k.prefix, m)
}

func (k Keyspace) StreakCounts(m domain.GameMode) string {
	return fmt.Sprintf("%s:%s:streaks:count", k.prefix, m)
}

// StreakLast scores each player by the last challenge they solved.
func (k Keyspace) StreakLast(m domain.GameMode) string {
	return fmt.Sprintf("%s:%s:streaks:last", k.prefix, m)
}

// WordConfig and Comparison are mode independent: similarity facts do not depend on the game.
func (k Keyspace) WordConfig(word string) string {
	return fmt.Sprintf("%s:similarity:config:%s", k.prefix, word)
}

// Comparison is keyed on the ordered pair. The service lemmatizes only the guess, so swapping is not equivalent.
func (k Keyspace) Comparison(secret, guess string) string {
	return fmt.Sprintf("%s:similarity:compare:%s:%s", k.prefix, secret, guess)
}

// UserChannel is the pub/sub channel notifications for a player are published to.
func (k Keyspace) UserChannel(player string) string {
	return fmt.Sprintf("%s:user:%s", k.prefix, player)
}

// ChallengeChannel receives announcements of newly minted challenges.
func (k Keyspace) ChallengeChannel(m domain.GameMode) string {
	return fmt.Sprintf("%s:%s:challenges", k.prefix, m)
}
