package grader

import (
	"encoding/json"
	"testing"

	"github.com/satprep-labs/practice-session-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func mcQuestion(t *testing.T, options []models.AnswerOption, correct []string) *models.Question {
	t.Helper()
	opts, err := json.Marshal(options)
	require.NoError(t, err)
	ans, err := json.Marshal(correct)
	require.NoError(t, err)
	return &models.Question{
		ID:            "q-mc",
		Type:          models.QuestionMultipleChoice,
		AnswerOptions: datatypes.JSON(opts),
		CorrectAnswer: datatypes.JSON(ans),
	}
}

func sprQuestion(t *testing.T, correct []string) *models.Question {
	t.Helper()
	ans, err := json.Marshal(correct)
	require.NoError(t, err)
	return &models.Question{
		ID:            "q-spr",
		Type:          models.QuestionStudentResponse,
		CorrectAnswer: datatypes.JSON(ans),
	}
}

func TestGradeMultipleChoiceByOptionID(t *testing.T) {
	q := mcQuestion(t, []models.AnswerOption{
		{ID: "u1", Content: "4"},
		{ID: "u2", Content: "9"},
	}, []string{"B"})

	assert.True(t, Grade(q, []string{"u2"}))
	assert.False(t, Grade(q, []string{"u1"}))
}

func TestGradeLabelAndOptionIDAreEquivalent(t *testing.T) {
	q := mcQuestion(t, []models.AnswerOption{
		{ID: "opt1", Content: "one"},
		{ID: "opt2", Content: "two"},
		{ID: "opt3", Content: "three"},
		{ID: "opt4", Content: "four"},
	}, []string{"C"})

	byID := Grade(q, []string{"opt3"})
	byLabel := Grade(q, []string{"C"})
	byLowerLabel := Grade(q, []string{"c"})

	assert.True(t, byID)
	assert.Equal(t, byID, byLabel)
	assert.Equal(t, byID, byLowerLabel)
}

func TestGradeHonorsExplicitOptionLabels(t *testing.T) {
	q := mcQuestion(t, []models.AnswerOption{
		{ID: "x1", Label: "D", Content: "first but labeled D"},
		{ID: "x2", Label: "A", Content: "second but labeled A"},
	}, []string{"A"})

	assert.True(t, Grade(q, []string{"x2"}))
	assert.False(t, Grade(q, []string{"x1"}))
}

func TestGradeUnresolvableValueFallsBackToUppercase(t *testing.T) {
	q := mcQuestion(t, []models.AnswerOption{
		{ID: "u1", Content: "4"},
		{ID: "u2", Content: "9"},
	}, []string{"zz"})

	// Neither a label nor an option id: compared as upper-cased literal.
	assert.True(t, Grade(q, []string{"ZZ"}))
	assert.True(t, Grade(q, []string{"zz"}))
	assert.False(t, Grade(q, []string{"zy"}))
}

func TestGradeFreeResponseAcceptsEnumeratedAlternatives(t *testing.T) {
	// The key lists acceptable forms of one answer; any of them is correct.
	q := sprQuestion(t, []string{"7", "7.0"})

	assert.True(t, Grade(q, []string{" 7 "}))
	assert.True(t, Grade(q, []string{"7.0"}))
	assert.False(t, Grade(q, []string{"seven"}))
	assert.False(t, Grade(q, []string{"7", "seven"}), "every submitted value must be an accepted form")
	assert.False(t, Grade(q, nil))
}

func TestGradeSingleFreeResponseValue(t *testing.T) {
	q := sprQuestion(t, []string{"x=4"})

	assert.True(t, Grade(q, []string{"  X=4 "}))
	assert.False(t, Grade(q, []string{"x=4.0"}), "no numeric tolerance")
}

func TestGradeScalarCorrectAnswer(t *testing.T) {
	// Backend sometimes stores a bare string instead of an array.
	q := &models.Question{
		ID:            "q-scalar",
		Type:          models.QuestionStudentResponse,
		CorrectAnswer: datatypes.JSON(`"42"`),
	}

	assert.True(t, Grade(q, []string{"42"}))
	assert.False(t, Grade(q, []string{"41"}))
}

func TestGradeIsDeterministic(t *testing.T) {
	q := mcQuestion(t, []models.AnswerOption{
		{ID: "a", Content: "1"},
		{ID: "b", Content: "2"},
	}, []string{"A"})

	first := Grade(q, []string{"a"})
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Grade(q, []string{"a"}))
	}
}

func TestSortedEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want bool
	}{
		{"order independent", []string{"b", "a"}, []string{"a", "b"}, true},
		{"different members", []string{"a", "b"}, []string{"a", "c"}, false},
		{"different length", []string{"a"}, []string{"a", "b"}, false},
		{"case sensitive", []string{"a"}, []string{"A"}, false},
		{"both empty", nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SortedEqual(tt.a, tt.b))
		})
	}
}

func TestSortedEqualDoesNotMutateInputs(t *testing.T) {
	a := []string{"c", "a", "b"}
	b := []string{"a", "b", "c"}
	SortedEqual(a, b)
	assert.Equal(t, []string{"c", "a", "b"}, a)
}

func TestNormalizeConfidence(t *testing.T) {
	assert.Equal(t, 3, NormalizeConfidence(0))
	assert.Equal(t, 3, NormalizeConfidence(9))
	assert.Equal(t, 3, NormalizeConfidence(-1))
	assert.Equal(t, 1, NormalizeConfidence(1))
	assert.Equal(t, 5, NormalizeConfidence(5))
}
