package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialogLogPreservesOrder(t *testing.T) {
	log := NewDialogLog()
	for _, e := range []string{"one", "two", "three"} {
		require.NoError(t, log.Append(e))
	}

	assert.Equal(t, []string{"one", "two", "three"}, log.Entries())
	assert.Equal(t, "one\n\ntwo\n\nthree", log.Render())
	assert.Equal(t, 3, log.Len())
}

func TestDialogLogEntriesIsCopy(t *testing.T) {
	log := NewDialogLog()
	require.NoError(t, log.Append("a"))
	entries := log.Entries()
	entries[0] = "changed"
	assert.Equal(t, []string{"a"}, log.Entries())
}

func TestDialogLogRejectsAppendAfterSeal(t *testing.T) {
	log := NewDialogLog()
	require.NoError(t, log.Append("a"))
	_, err := log.seal()
	require.NoError(t, err)

	assert.ErrorIs(t, log.Append("b"), ErrAlreadyFlushed)
	_, err = log.seal()
	assert.ErrorIs(t, err, ErrAlreadyFlushed)
	assert.True(t, log.Flushed())
}

func TestEntryFormats(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, "Dialog with applicant started at:\n2024-03-09 14:05:07", StartedEntry(at))
	assert.Equal(t, "User Information:\nName: Alice\nVacancy: Backend Engineer\nCV: cv.txt",
		UserInfoEntry("Alice", "Backend Engineer", "cv.txt"))
	assert.Equal(t, "Vacancy details at the time of the conversation:\nName: X", VacancyEntry("Name: X"))
	assert.Equal(t, "--------------\nApplicant answer:\n yes\n---------------", AnswerEntry("yes"))
	assert.Equal(t, "Assistant: hi", AssistantEntry("hi"))
}
