package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLabelSelector_Empty(t *testing.T) {
	assert.Equal(t, "(discovery)", BuildLabelSelector(nil, nil))
	assert.Equal(t, "(discovery)", BuildLabelSelector([]string{}, []string{}))
}

func TestBuildLabelSelector_TargetsOnly(t *testing.T) {
	assert.Equal(t, "(konveyor.io/target=t1) || (discovery)", BuildLabelSelector(nil, []string{"t1"}))
	assert.Equal(t,
		"(konveyor.io/target=t1 || konveyor.io/target=t2) || (discovery)",
		BuildLabelSelector(nil, []string{"t1", "t2"}))
}

func TestBuildLabelSelector_SourcesOnly(t *testing.T) {
	assert.Equal(t, "(konveyor.io/source=s1) || (discovery)", BuildLabelSelector([]string{"s1"}, nil))
}

func TestBuildLabelSelector_Both(t *testing.T) {
	assert.Equal(t,
		"(konveyor.io/target=t1) && (konveyor.io/source=s1) || (discovery)",
		BuildLabelSelector([]string{"s1"}, []string{"t1"}))
	assert.Equal(t,
		"(konveyor.io/target=t1 || konveyor.io/target=t2) && (konveyor.io/source=s1 || konveyor.io/source=s2) || (discovery)",
		BuildLabelSelector([]string{"s1", "s2"}, []string{"t1", "t2"}))
}

func TestBundled_ReadOnlyAndFresh(t *testing.T) {
	a := Bundled()
	require.NotEmpty(t, a)
	for _, p := range a {
		assert.True(t, p.ReadOnly, p.ID)
		assert.NotEmpty(t, p.LabelSelector, p.ID)
	}

	a[0].Name = "changed"
	assert.NotEqual(t, "changed", Bundled()[0].Name)
}

func TestMerge_BundledFirst(t *testing.T) {
	user := []AnalysisProfile{{ID: "u1", Name: "mine"}}
	merged := Merge(user)

	require.Len(t, merged, len(Bundled())+1)
	assert.Equal(t, Bundled()[0].ID, merged[0].ID)
	assert.Equal(t, "u1", merged[len(merged)-1].ID)
}

func TestUserOnly(t *testing.T) {
	in := []AnalysisProfile{{ID: "b", ReadOnly: true}, {ID: "u"}}
	out := UserOnly(in)
	require.Len(t, out, 1)
	assert.Equal(t, "u", out[0].ID)
}

func TestFind(t *testing.T) {
	profiles := []AnalysisProfile{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}

	p, ok := Find(profiles, "b")
	assert.True(t, ok)
	assert.Equal(t, "B", p.Name)

	_, ok = Find(profiles, "zzz")
	assert.False(t, ok)

	p, ok = FindByName(profiles, "A")
	assert.True(t, ok)
	assert.Equal(t, "a", p.ID)
}

func TestResolveActiveID(t *testing.T) {
	profiles := []AnalysisProfile{{ID: "a"}, {ID: "b"}}

	assert.Equal(t, "b", ResolveActiveID(profiles, "b"))
	assert.Equal(t, "a", ResolveActiveID(profiles, "gone"))
	assert.Equal(t, "a", ResolveActiveID(profiles, ""))
	assert.Equal(t, "", ResolveActiveID(nil, "b"))
}

func TestNewID_Unique(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
}
