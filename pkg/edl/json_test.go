package edl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const validDoc = `{
  "id": "e1",
  "sample_rate": 48000,
  "media": [{"id": "m1", "path": "/media/a.wav"}],
  "tracks": [{
    "id": "t1",
    "clips": [{
      "id": "c1",
      "media_id": "m1",
      "start_in_media": 0,
      "duration": 4800,
      "start_in_timeline": 0,
      "fade_in": {"duration_samples": 480, "shape": "linear"}
    }]
  }]
}`

func TestParseDocumentAcceptsWellFormedDocument(t *testing.T) {
	e, err := ParseDocument([]byte(validDoc))
	require.NoError(t, err)
	require.Equal(t, "e1", e.ID)
	require.Equal(t, 48000, e.SampleRate)
	require.Len(t, e.Tracks, 1)
	require.Equal(t, FadeLinear, e.Tracks[0].Clips[0].FadeIn.Shape)
}

func TestParseDocumentNormalizesFadeShapeCase(t *testing.T) {
	e, err := ParseDocument([]byte(validDoc))
	require.NoError(t, err)
	require.Equal(t, FadeShape("LINEAR"), e.Tracks[0].Clips[0].FadeIn.Shape)
}

func TestParseDocumentRejectsUnknownTopLevelField(t *testing.T) {
	const doc = `{
	  "id": "e1", "sample_rate": 48000, "media": [], "tracks": [],
	  "unexpected_field": true
	}`
	_, err := ParseDocument([]byte(doc))
	require.Error(t, err)
}

func TestParseDocumentRejectsMissingRequiredField(t *testing.T) {
	const doc = `{"sample_rate": 48000, "media": [], "tracks": []}`
	_, err := ParseDocument([]byte(doc))
	require.Error(t, err)
}

func TestParseDocumentRejectsMalformedJSON(t *testing.T) {
	_, err := ParseDocument([]byte(`{not json`))
	require.Error(t, err)
}

func TestMarshalDocumentRoundTrips(t *testing.T) {
	e, err := ParseDocument([]byte(validDoc))
	require.NoError(t, err)

	out, err := MarshalDocument(e)
	require.NoError(t, err)

	e2, err := ParseDocument(out)
	require.NoError(t, err)
	require.Equal(t, e.ID, e2.ID)
	require.Equal(t, e.Tracks[0].Clips[0].FadeIn.Shape, e2.Tracks[0].Clips[0].FadeIn.Shape)
}

func TestMediaByIDFindsRegisteredEntry(t *testing.T) {
	e, err := ParseDocument([]byte(validDoc))
	require.NoError(t, err)

	ref, ok := e.MediaByID("m1")
	require.True(t, ok)
	require.Equal(t, "/media/a.wav", ref.Path)

	_, ok = e.MediaByID("missing")
	require.False(t, ok)
}
