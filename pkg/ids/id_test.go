package ids

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDHexRoundTrip(t *testing.T) {
	require := require.New(t)

	id := GenerateTestID()
	parsed, err := FromString(id.String())
	require.NoError(err)
	require.Equal(id, parsed)

	_, err = FromString("not-hex")
	require.Error(err)

	_, err = FromString("abcd")
	require.Error(err)
}

func TestIDJSONRoundTrip(t *testing.T) {
	require := require.New(t)

	id := GenerateTestID()
	data, err := json.Marshal(id)
	require.NoError(err)
	require.JSONEq(`"`+id.String()+`"`, string(data))

	var parsed ID
	require.NoError(json.Unmarshal(data, &parsed))
	require.Equal(id, parsed)
}

func TestFromNameIsStable(t *testing.T) {
	require := require.New(t)

	require.Equal(FromName("deed://plot/42"), FromName("deed://plot/42"))
	require.NotEqual(FromName("deed://plot/42"), FromName("deed://plot/43"))
}
