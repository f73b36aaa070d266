package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPromptLine(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("  my-client-id  \n"))
	var out bytes.Buffer

	got, err := promptLine(in, "Client ID", &out)
	require.NoError(t, err)
	require.Equal(t, "my-client-id", got)
	require.Contains(t, out.String(), "Client ID")
}

func TestPromptLine_EOFWithPartialInput(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("lastline"))
	var out bytes.Buffer

	got, err := promptLine(in, "Value", &out)
	require.NoError(t, err)
	require.Equal(t, "lastline", got)
}

func TestPromptSecret_Error(t *testing.T) {
	old := readPassword
	defer func() { readPassword = old }()
	readPassword = func(int) ([]byte, error) {
		return nil, errors.New("no terminal")
	}

	var out bytes.Buffer
	_, err := promptSecret("Client secret", &out)
	require.Error(t, err)
}

func TestPromptSecret(t *testing.T) {
	old := readPassword
	defer func() { readPassword = old }()
	readPassword = func(int) ([]byte, error) {
		return []byte("s3cret"), nil
	}

	var out bytes.Buffer
	got, err := promptSecret("Client secret", &out)
	require.NoError(t, err)
	require.Equal(t, []byte("s3cret"), got)
}
