package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-chat/pkg/log"
)

func TestLogTarget(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer
	ctx := log.WithLogger(context.Background(), zerolog.New(&buf))

	LogTarget(ctx, ActionGroupDelete, "u1", "g1", "group deleted")

	var entry map[string]interface{}
	req.NoError(json.Unmarshal(buf.Bytes(), &entry))
	req.Equal(log.LogTypeAudit, entry[log.FieldLogType])
	req.Equal(ActionGroupDelete, entry[FieldAction])
	req.Equal("u1", entry[log.FieldUserID])
	req.Equal("g1", entry[FieldTargetID])
	req.Equal("group deleted", entry["message"])
}
