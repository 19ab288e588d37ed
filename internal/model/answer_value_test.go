package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerValueJSON(t *testing.T) {
	var v AnswerValue
	require.NoError(t, json.Unmarshal([]byte(`"B"`), &v))
	assert.False(t, v.IsSet)
	assert.Equal(t, "B", v.Single)

	require.NoError(t, json.Unmarshal([]byte(`["x","y"]`), &v))
	assert.True(t, v.IsSet)
	assert.Equal(t, []string{"x", "y"}, v.Multi)

	assert.Error(t, json.Unmarshal([]byte(`42`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &v))

	out, err := json.Marshal(SetAnswer())
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(out))

	out, err = json.Marshal(SingleAnswer("B"))
	require.NoError(t, err)
	assert.Equal(t, `"B"`, string(out))
}

func TestAnswerValueShape(t *testing.T) {
	assert.True(t, SingleAnswer("B").MatchesType(QuestionMultipleChoice))
	assert.True(t, SingleAnswer("true").MatchesType(QuestionTrueFalse))
	assert.True(t, SingleAnswer("Paris").MatchesType(QuestionFillInBlank))
	assert.True(t, SetAnswer("x").MatchesType(QuestionMatching))

	assert.False(t, SetAnswer("x").MatchesType(QuestionMultipleChoice))
	assert.False(t, SingleAnswer("x").MatchesType(QuestionMatching))

	assert.True(t, SingleAnswer("").IsEmpty())
	assert.True(t, SetAnswer().IsEmpty())
	assert.False(t, SetAnswer("x").IsEmpty())
}
