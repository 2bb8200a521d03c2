// Package cmdutil provides helpers shared by catalogsync commands.
package cmdutil

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/errors"
)

// ErrFailures is returned by commands that printed their report but must
// still exit non-zero.
var ErrFailures = errors.New("one or more entities failed")

// KindUsage documents the kind argument accepted by entity commands.
const KindUsage = "domain, service, channel, event, command or query"

// ParseKey builds an entity key from a kind argument and an id.
// Messages must be named by their message type.
func ParseKey(kind, id string) (catalogs.Key, error) {
	k, mt, err := catalogs.ParseKind(kind)
	if err != nil {
		return catalogs.Key{}, err
	}
	if k == catalogs.KindMessage && mt == "" {
		return catalogs.Key{}, errors.NewValidationError("kind", kind,
			fmt.Sprintf("messages are addressed by type: %s", KindUsage))
	}
	if err := catalogs.ValidateSegment("id", id); err != nil {
		return catalogs.Key{}, err
	}
	return catalogs.Key{Kind: k, MessageType: mt, ID: id}, nil
}

// MustGetBool retrieves a boolean flag value or panics if the flag doesn't exist.
// This should only be used for flags defined by the calling package.
func MustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}

// MustGetString retrieves a string flag value or panics if the flag doesn't exist.
// This should only be used for flags defined by the calling package.
func MustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}
