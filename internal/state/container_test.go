package state

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianshen/aksmigrate/internal/profile"
)

func TestContainer_MutateCommitsNewSnapshot(t *testing.T) {
	c := NewContainer(Default("/ws"))
	before := c.State()

	after := c.Mutate(func(d *ExtensionData) {
		d.IsAnalyzing = true
		d.RuleSets = append(d.RuleSets, RuleSet{Name: "rs"})
	})

	assert.True(t, after.IsAnalyzing)
	assert.Same(t, after, c.State())
	assert.False(t, before.IsAnalyzing, "previous snapshot must not change")
	assert.Empty(t, before.RuleSets)
}

func TestContainer_SubscribersSeeCommitOrder(t *testing.T) {
	c := NewContainer(Default(""))

	var seen []int
	c.Subscribe(func(d *ExtensionData) {
		seen = append(seen, d.AnalysisProgress)
	})

	for i := 1; i <= 5; i++ {
		n := i
		c.Mutate(func(d *ExtensionData) { d.AnalysisProgress = n })
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5}, seen)
}

func TestContainer_CumulativeEdits(t *testing.T) {
	c := NewContainer(Default(""))

	var last *ExtensionData
	c.Subscribe(func(d *ExtensionData) { last = d })

	for i := 0; i < 10; i++ {
		n := i
		c.Mutate(func(d *ExtensionData) {
			d.ChatMessages = append(d.ChatMessages, ChatMessage{Value: fmt.Sprint(n)})
		})
		require.Len(t, last.ChatMessages, n+1)
		for j := 0; j <= n; j++ {
			assert.Equal(t, fmt.Sprint(j), last.ChatMessages[j].Value)
		}
	}
}

func TestContainer_TryMutateErrorKeepsState(t *testing.T) {
	c := NewContainer(Default(""))
	notified := 0
	c.Subscribe(func(*ExtensionData) { notified++ })
	before := c.State()

	boom := errors.New("boom")
	got, err := c.TryMutate(func(d *ExtensionData) error {
		d.ActiveProfileID = "half-done"
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Same(t, before, got)
	assert.Same(t, before, c.State())
	assert.Empty(t, c.State().ActiveProfileID)
	assert.Zero(t, notified)
}

func TestContainer_PanicKeepsStateAndUnlocks(t *testing.T) {
	c := NewContainer(Default(""))

	assert.Panics(t, func() {
		c.Mutate(func(d *ExtensionData) {
			d.IsFetchingSolution = true
			panic("recipe failed")
		})
	})
	assert.False(t, c.State().IsFetchingSolution)

	c.Mutate(func(d *ExtensionData) { d.IsStartingServer = true })
	assert.True(t, c.State().IsStartingServer)
}

func TestContainer_Unsubscribe(t *testing.T) {
	c := NewContainer(Default(""))
	var a, b int
	unsubA := c.Subscribe(func(*ExtensionData) { a++ })
	c.Subscribe(func(*ExtensionData) { b++ })

	c.Mutate(func(*ExtensionData) {})
	unsubA()
	unsubA()
	c.Mutate(func(*ExtensionData) {})

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
	assert.Equal(t, 1, c.Len())
}

func TestContainer_WatchDeliversCurrentFirst(t *testing.T) {
	c := NewContainer(Default(""))
	c.Mutate(func(d *ExtensionData) { d.AnalysisProgress = 1 })

	var seen []int
	unsub := c.Watch(func(d *ExtensionData) { seen = append(seen, d.AnalysisProgress) })
	c.Mutate(func(d *ExtensionData) { d.AnalysisProgress = 2 })
	unsub()
	c.Mutate(func(d *ExtensionData) { d.AnalysisProgress = 3 })

	assert.Equal(t, []int{1, 2}, seen)
}

func TestContainer_CloseDropsListeners(t *testing.T) {
	c := NewContainer(Default(""))
	n := 0
	c.Subscribe(func(*ExtensionData) { n++ })

	c.Close()
	got := c.Mutate(func(d *ExtensionData) { d.IsAnalyzing = true })

	assert.Zero(t, n)
	assert.Zero(t, c.Len())
	assert.True(t, got.IsAnalyzing)
}

func TestContainer_ConcurrentMutationsDoNotLoseUpdates(t *testing.T) {
	c := NewContainer(Default(""))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Mutate(func(d *ExtensionData) { d.AnalysisProgress++ })
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, c.State().AnalysisProgress)
}

func TestClone_IsDeep(t *testing.T) {
	line := 7
	d := Default("/ws")
	d.Profiles = []profile.AnalysisProfile{{ID: "p1", CustomRules: []string{"a"}}}
	d.EnhancedIncidents = []EnhancedIncident{{Incident: Incident{URI: "f", LineNumber: &line}, ViolationID: "v"}}
	d.SolutionScope = &Scope{Effort: "Low"}

	cp := d.Clone()
	cp.Profiles[0].CustomRules[0] = "b"
	*cp.EnhancedIncidents[0].LineNumber = 9
	cp.SolutionScope.Effort = "High"

	assert.Equal(t, "a", d.Profiles[0].CustomRules[0])
	assert.Equal(t, 7, *d.EnhancedIncidents[0].LineNumber)
	assert.Equal(t, "Low", d.SolutionScope.Effort)
}

func TestEnhancedIncident_Key(t *testing.T) {
	line := 12
	withLine := EnhancedIncident{Incident: Incident{URI: "file:///a.java", LineNumber: &line}, ViolationID: "v1"}
	noLine := EnhancedIncident{Incident: Incident{URI: "file:///a.java"}, ViolationID: "v1"}

	assert.Equal(t, "v1|file:///a.java|12", withLine.Key())
	assert.Equal(t, "v1|file:///a.java|unknown", noLine.Key())
}

func TestDefault(t *testing.T) {
	d := Default("/ws")

	assert.Equal(t, "/ws", d.WorkspaceRoot)
	assert.Equal(t, ServerInitial, d.ServerState)
	assert.Equal(t, StepSetup, d.WizardState.CurrentStep)
	assert.Empty(t, d.WizardState.CompletedSteps)
	assert.Equal(t, "development", d.WizardState.StepData.Deploy.DeploymentTarget)

	_, ok := d.ActiveProfile()
	assert.False(t, ok)
}

func TestExtensionData_Helpers(t *testing.T) {
	d := Default("")
	d.Profiles = []profile.AnalysisProfile{{ID: "p1"}}
	d.ActiveProfileID = "p1"
	d.ConfigErrors = []ConfigError{{Type: ErrNoCustomRules}}
	d.EnhancedIncidents = []EnhancedIncident{{Resolved: true}, {}, {}}

	p, ok := d.ActiveProfile()
	assert.True(t, ok)
	assert.Equal(t, "p1", p.ID)
	assert.True(t, d.HasConfigError(ErrNoCustomRules))
	assert.False(t, d.HasConfigError(ErrNoActiveProfile))
	assert.Equal(t, 2, d.UnresolvedIncidents())
}
