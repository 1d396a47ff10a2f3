package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomPluginIsDeterministicPerTask(t *testing.T) {
	p1 := &RandomPlugin{TaskID: 1, TaskName: "task-a"}
	p2 := &RandomPlugin{TaskID: 1, TaskName: "task-a"}

	assert.Equal(t, p1.generate(16), p2.generate(16), "same task identity must produce the same first block")
}

func TestRandomPluginDiffersByTaskID(t *testing.T) {
	a := (&RandomPlugin{TaskID: 1, TaskName: "x"}).generate(16)
	b := (&RandomPlugin{TaskID: 2, TaskName: "x"}).generate(16)
	assert.NotEqual(t, a, b)
}

func TestRandomPluginDiffersByTaskName(t *testing.T) {
	a := (&RandomPlugin{TaskID: 1, TaskName: "x"}).generate(16)
	b := (&RandomPlugin{TaskID: 1, TaskName: "y"}).generate(16)
	assert.NotEqual(t, a, b)
}

func TestRandomPluginAdvancesAcrossCalls(t *testing.T) {
	p := &RandomPlugin{TaskID: 1, TaskName: "task-a"}
	first := p.generate(32)
	second := p.generate(32)
	assert.NotEqual(t, first, second, "successive calls must consume fresh blocks, not repeat")
}

func TestRandomPluginHandlesRequestsSpanningMultipleBlocks(t *testing.T) {
	p := &RandomPlugin{TaskID: 1, TaskName: "task-a"}
	out := p.generate(100)
	assert.Len(t, out, 100)
}

func TestRandomPluginReplayMatchesLiveSequence(t *testing.T) {
	live := &RandomPlugin{TaskID: 9, TaskName: "replayed"}
	wantFirst := live.generate(8)
	wantSecond := live.generate(8)

	replay := &RandomPlugin{TaskID: 9, TaskName: "replayed"}
	assert.Equal(t, wantFirst, replay.generate(8))
	assert.Equal(t, wantSecond, replay.generate(8))
}
