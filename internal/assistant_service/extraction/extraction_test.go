package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractContacts_RelationshipIntroductions(t *testing.T) {
	contacts := ExtractContacts("Can you remind me to call my sister Anna about dinner? My boss Miguel needs the report too.")
	require.Len(t, contacts, 2)
	assert.Equal(t, ContactCandidate{Name: "Anna", Relationship: "sister"}, contacts[0])
	assert.Equal(t, ContactCandidate{Name: "Miguel", Relationship: "boss"}, contacts[1])
}

func TestExtractContacts_ActionVerbMentions(t *testing.T) {
	contacts := ExtractContacts("Please text Maria when you get a chance, and call John tomorrow.")
	require.Len(t, contacts, 2)
	assert.Equal(t, "Maria", contacts[0].Name)
	assert.Empty(t, contacts[0].Relationship)
	assert.Equal(t, "John", contacts[1].Name)
}

func TestExtractContacts_DeduplicatesAndKeepsRelationship(t *testing.T) {
	contacts := ExtractContacts("Call Anna later. My sister Anna said she'd be home.")
	require.Len(t, contacts, 1)
	assert.Equal(t, "Anna", contacts[0].Name)
	assert.Equal(t, "sister", contacts[0].Relationship)
}

func TestExtractContacts_SkipsPronouns(t *testing.T) {
	contacts := ExtractContacts("Call me back. Tell them I said hi.")
	assert.Empty(t, contacts)
}

func TestScoreSentiment(t *testing.T) {
	assert.Equal(t, SentimentPositive, ScoreSentiment("I love this, thanks so much, it's great!"))
	assert.Equal(t, SentimentNegative, ScoreSentiment("I'm so frustrated and stressed about this awful week"))
	assert.Equal(t, SentimentNeutral, ScoreSentiment("Schedule a meeting for Tuesday at 3pm"))
	assert.Equal(t, SentimentNeutral, ScoreSentiment("I love it but I also hate it"))
	assert.Equal(t, SentimentNeutral, ScoreSentiment(""))
}
