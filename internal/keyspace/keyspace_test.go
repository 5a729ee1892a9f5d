package keyspace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/victornm/hotcold/internal/domain"
	"github.com/victornm/hotcold/internal/keyspace"
)

func TestKeyspace(t *testing.T) {
	k := keyspace.New("hc")

	assert.Equal(t, "hc:classic:challenge:7", k.Challenge(domain.ModeClassic, 7))
	assert.Equal(t, "hc:hardcore:challenge:7:tokens", k.Tokens(domain.ModeHardcore, 7))
	assert.NotEqual(t, k.Queue(domain.ModeClassic), k.Queue(domain.ModeHardcore))
	assert.NotEqual(t, k.Comparison("ocean", "sea"), k.Comparison("sea", "ocean"))
	assert.Equal(t, "hc:similarity:config:ocean", k.WordConfig("ocean"))
	assert.NotEqual(t, k.WinnersPublishLock(domain.ModeClassic, 7), k.WinnersPublishPending(domain.ModeClassic, 7))
}
