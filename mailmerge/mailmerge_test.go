package mailmerge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/courseops/tabular"
)

const nameTemplate = "{{First_Name}} {{Last_Name}}"

const rosterCSV = "User_Name,First_Name,Last_Name\nauser1,a,user1\nbuser2,b,user2\n"

func TestRenderPerKey(t *testing.T) {
	records, err := tabular.ReadRecords(strings.NewReader(rosterCSV), "User_Name")
	require.NoError(t, err)

	result, err := RenderPerKey(strings.NewReader(nameTemplate), records)
	require.NoError(t, err)

	// One entry per record, same key set, each value rendered in
	// isolation.
	assert.Equal(t, records.Len(), result.Len())
	assert.Equal(t, records.Keys(), result.Keys())

	v, ok := result.Get("auser1")
	require.True(t, ok)
	assert.Equal(t, "a user1", v)

	v, ok = result.Get("buser2")
	require.True(t, ok)
	assert.Equal(t, "b user2", v)
}

func TestRenderFromCSV(t *testing.T) {
	t.Run("with key", func(t *testing.T) {
		result, err := RenderFromCSV(
			strings.NewReader(nameTemplate),
			strings.NewReader(rosterCSV),
			"User_Name",
		)
		require.NoError(t, err)
		v, _ := result.Get("auser1")
		assert.Equal(t, "a user1", v)
	})

	t.Run("without key defaults to leftmost column", func(t *testing.T) {
		result, err := RenderFromCSV(
			strings.NewReader(nameTemplate),
			strings.NewReader(rosterCSV),
			"",
		)
		require.NoError(t, err)
		assert.Equal(t, []string{"auser1", "buser2"}, result.Keys())
	})
}

func TestRenderFromYAML(t *testing.T) {
	src := strings.Join([]string{
		"1:",
		"  First_Name: a",
		"  Last_Name: user1",
		"2:",
		"  First_Name: b",
		"  Last_Name: user2",
		"",
	}, "\n")

	result, err := RenderFromYAML(strings.NewReader(nameTemplate), strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, result.Keys())
	v, _ := result.Get("1")
	assert.Equal(t, "a user1", v)
	v, _ = result.Get("2")
	assert.Equal(t, "b user2", v)
}

func TestRenderFromYAML_InjectsMainKey(t *testing.T) {
	src := "7:\n  Name: x\n"
	tpl := "{{yaml_file_main_key}}-{{Name}}"

	result, err := RenderFromYAML(strings.NewReader(tpl), strings.NewReader(src))
	require.NoError(t, err)

	v, ok := result.Get("7")
	require.True(t, ok)
	assert.Equal(t, "7-x", v)
}

func TestFlatten_LiteralContract(t *testing.T) {
	m := &Result{}
	m.Set("b", "2")
	m.Set("a", "1")

	// Leading separator, none trailing, sorted by key regardless of
	// insertion order.
	assert.Equal(t, "|a:1|b:2", Flatten(m, ":", "|"))
}

func TestFlatten_EmptyResult(t *testing.T) {
	m := &Result{}

	// Zero entries degenerate to the bare items separator.
	assert.Equal(t, "|", Flatten(m, ":", "|"))
	assert.Equal(t, "", Flatten(m, "", ""))
}

func TestFlatten_EmptySeparators(t *testing.T) {
	m := &Result{}
	m.Set("auser1", "a user1")
	m.Set("buser2", "b user2")

	assert.Equal(t, "auser1a user1buser2b user2", Flatten(m, "", ""))
	assert.Equal(t, "buser2b user2auser1a user1", Flatten(m, "", "", Reverse()))
}

func TestFlatten_SuppressKeys(t *testing.T) {
	m := &Result{}
	m.Set("b", "2")
	m.Set("a", "1")

	assert.Equal(t, "|1|2", Flatten(m, ":", "|", SuppressKeys()))
}

func TestFlatten_InsertionOrderInvariant(t *testing.T) {
	first := &Result{}
	first.Set("a", "1")
	first.Set("b", "2")

	second := &Result{}
	second.Set("b", "2")
	second.Set("a", "1")

	assert.Equal(t, Flatten(first, ":", "|"), Flatten(second, ":", "|"))
}

func TestRenderPerKey_FirstErrorPropagates(t *testing.T) {
	records, err := tabular.ReadRecords(strings.NewReader(rosterCSV), "User_Name")
	require.NoError(t, err)

	_, err = RenderPerKey(strings.NewReader("{% bad"), records)
	assert.Error(t, err)
}
