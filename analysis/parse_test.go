package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roundtable/core"
)

const wellFormed = `{
  "mainPoints": [{"point": "Cost of transit", "description": "Who pays"}],
  "participantStances": [{"participant": "A", "stance": "For", "keyArguments": ["cleaner air", 3]}],
  "conflicts": [{"issue": "Deliveries", "sides": ["allow", "ban"], "description": "Last mile"}],
  "commonGround": ["Safety matters"],
  "unexploredAreas": ["Rural areas"]
}`

func TestParse_WellFormed(t *testing.T) {
	a, err := Parse(wellFormed)
	require.NoError(t, err)
	assert.Equal(t, []core.MainPoint{{Point: "Cost of transit", Description: "Who pays"}}, a.MainPoints)
	require.Len(t, a.ParticipantStances, 1)
	assert.Equal(t, []string{"cleaner air"}, a.ParticipantStances[0].KeyArguments)
	assert.Equal(t, []string{"allow", "ban"}, a.Conflicts[0].Sides)
	assert.Equal(t, []string{"Safety matters"}, a.CommonGround)
	assert.Equal(t, []string{"Rural areas"}, a.UnexploredAreas)
}

func TestParse_RepairsFencesAndTrailingCommas(t *testing.T) {
	raw := "Here is the analysis:\n```json\n{\n  \"mainPoints\": [{\"point\": \"Cost\"},],\n  \"commonGround\": [“Safety”],\n}\n```\nHope this helps."
	a, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Cost", a.MainPoints[0].Point)
	assert.Equal(t, []string{"Safety"}, a.CommonGround)
}

func TestParse_RepairsSurroundingProse(t *testing.T) {
	a, err := Parse(`Sure! {"unexploredAreas": ["Funding"]} Let me know.`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Funding"}, a.UnexploredAreas)
}

func TestParse_FiltersMisshapenEntries(t *testing.T) {
	raw := `{
	  "mainPoints": ["bare string", {"point": ""}, {"point": 5}, {"point": "kept"}],
	  "participantStances": [{"participant": "A"}, {"participant": "B", "stance": "Against"}],
	  "conflicts": {"issue": "not an array"},
	  "commonGround": ["ok", {"x": 1}, null, "  "],
	  "unexploredAreas": "none"
	}`
	a, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []core.MainPoint{{Point: "kept"}}, a.MainPoints)
	assert.Equal(t, []core.Stance{{Participant: "B", Stance: "Against"}}, a.ParticipantStances)
	assert.Nil(t, a.Conflicts)
	assert.Equal(t, []string{"ok"}, a.CommonGround)
	assert.Nil(t, a.UnexploredAreas)
}

func TestParse_Unrepairable(t *testing.T) {
	for _, raw := range []string{
		"",
		"I could not analyze this discussion.",
		`{"mainPoints": [{"point": "unterminated`,
		`["an", "array"]`,
		`{"somethingElse": true}`,
	} {
		_, err := Parse(raw)
		require.Error(t, err, raw)
		assert.True(t, core.IsFormatError(err), raw)
	}
}

func TestRepair(t *testing.T) {
	assert.Equal(t, `{"a":[1,2]}`, Repair("```json\n{\"a\":[1,2,]}\n```"))
	assert.Equal(t, `{"a":1}`, Repair(`noise {"a":1} noise`))
}
