package internal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrintBanner(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer

	PrintBanner(&out, "Group peer",
		Field{Name: "Identity", Value: "org/alice/v1"},
		Field{Name: "Server", Value: DefaultServer},
	)

	req.Contains(out.String(), "Group peer")
	req.Contains(out.String(), "org/alice/v1")
	req.Contains(out.String(), DefaultServer)
}
