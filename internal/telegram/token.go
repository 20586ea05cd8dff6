package telegram

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gotd/td/session"
)

// Session tokens are the raw gotd session payload in base64. They grant
// full account access and are handled as secrets everywhere outside this
// package.

func encodeToken(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// storageFromToken builds an in-memory session storage preloaded with the
// decoded token, ready to be handed to a new client.
func storageFromToken(ctx context.Context, token string) (*session.StorageMemory, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode session token: %w", err)
	}
	storage := &session.StorageMemory{}
	if err := storage.StoreSession(ctx, data); err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return storage, nil
}
