package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var scheduleCSV = strings.Join([]string{
	"Week,Monday,Tuesday,Wednesday,Thursday,Friday,Saturday,Sunday",
	`1,,Week 1 Activity 2|Week 1 Activity 3,Week 1 Activity 4,Week 1 Activity 5,Week 1 Activity 6,Week 1 Activity 7,Week 1 Activity 8`,
	`3,,Week 3 Activity 1,,,Week 3 Activity 2|Week 3 Activity 3,,`,
	"",
}, "\n")

type dayEntry struct {
	Date       string   `yaml:"Date"`
	Activities []string `yaml:"Activities"`
}

func decodeCalendar(t *testing.T, out string) map[int]map[string]dayEntry {
	t.Helper()
	var decoded map[int]map[string]dayEntry
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	return decoded
}

func TestBuildFromCSV(t *testing.T) {
	out, err := BuildFromCSV(
		strings.NewReader(scheduleCSV),
		time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
		"|",
		"Week",
	)
	require.NoError(t, err)

	decoded := decodeCalendar(t, out)
	require.Len(t, decoded, 2)

	week1 := decoded[1]
	require.Len(t, week1, 6) // Monday's blank cell is omitted
	assert.Equal(t, dayEntry{
		Date:       "02JAN2018",
		Activities: []string{"Week 1 Activity 2", "Week 1 Activity 3"},
	}, week1["Tuesday"])
	assert.Equal(t, "07JAN2018", week1["Sunday"].Date)

	week3 := decoded[3]
	require.Len(t, week3, 2)
	assert.Equal(t, "16JAN2018", week3["Tuesday"].Date)
	assert.Equal(t, dayEntry{
		Date:       "19JAN2018",
		Activities: []string{"Week 3 Activity 2", "Week 3 Activity 3"},
	}, week3["Friday"])
}

func TestBuildFromCSV_StartDateNormalizedToMonday(t *testing.T) {
	// Any start date within the same ISO week anchors week 1 to that
	// week's Monday, so all three produce identical output.
	dates := []time.Time{
		time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), // Monday
		time.Date(2018, 1, 2, 0, 0, 0, 0, time.UTC), // Tuesday
		time.Date(2018, 1, 3, 0, 0, 0, 0, time.UTC), // Wednesday
	}

	var outputs []string
	for _, d := range dates {
		out, err := BuildFromCSV(strings.NewReader(scheduleCSV), d, "|", "Week")
		require.NoError(t, err)
		outputs = append(outputs, out)
	}
	assert.Equal(t, outputs[0], outputs[1])
	assert.Equal(t, outputs[0], outputs[2])
}

func TestBuildFromCSV_OrderAndScalarStyle(t *testing.T) {
	out, err := BuildFromCSV(
		strings.NewReader(scheduleCSV),
		time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
		"|",
		"Week",
	)
	require.NoError(t, err)

	// Week keys are unquoted integers in source order; days follow
	// column order.
	assert.True(t, strings.HasPrefix(out, "1:\n"))
	assert.Contains(t, out, "\n3:\n")
	assert.Less(t, strings.Index(out, "Tuesday:"), strings.Index(out, "Wednesday:"))
	assert.Contains(t, out, "Date: 02JAN2018")
}

func TestBuildFromCSV_NonDayColumnKeepsOwnName(t *testing.T) {
	src := "Week,Tuesday,Readings\n1,Act A|Act B,Ch. 1|Ch. 2\n"
	out, err := BuildFromCSV(
		strings.NewReader(src),
		time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
		"|",
		"Week",
	)
	require.NoError(t, err)

	var decoded map[int]map[string]yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))

	var readings []string
	node := decoded[1]["Readings"]
	require.NoError(t, node.Decode(&readings))
	assert.Equal(t, []string{"Ch. 1", "Ch. 2"}, readings)

	// No date is computed for a non-day column.
	assert.NotContains(t, out, "Readings:\n    Date:")
}

func TestBuildFromCSV_BadWeekNumber(t *testing.T) {
	src := "Week,Tuesday\nfirst,Act A\n"
	_, err := BuildFromCSV(
		strings.NewReader(src),
		time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
		"|",
		"Week",
	)
	assert.Error(t, err)
}

func TestMondayOf(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "monday stays",
			in:   time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "wednesday rounds down",
			in:   time.Date(2018, 1, 3, 0, 0, 0, 0, time.UTC),
			want: time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday rounds down six days",
			in:   time.Date(2018, 1, 7, 0, 0, 0, 0, time.UTC),
			want: time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mondayOf(tt.in))
		})
	}
}
