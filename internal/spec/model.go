package spec

import (
	"fmt"
	"strings"
)

// ResourceDefinition is one decoded resource file.
type ResourceDefinition struct {
	Name        string
	Description string
	Version     string
	// Type is the optional root type; when set it must be "object".
	Type string
	// Key is the primary key schema. Nil only for rpc-only resources.
	Key         any
	Properties  map[string]any
	Required    []string
	Definitions map[string]any
	// Search and RPC keep the raw declarations; their shape is checked
	// during generation so every defect is reported in one pass.
	Search    any
	HasSearch bool
	RPC       any
	HasRPC    bool
	RPCOnly   bool

	// Raw is the normalized document. Local "#/..." references resolve
	// against it.
	Raw map[string]any
	// Location is the file the definition was read from, if any.
	Location string
}

// HasBody reports whether the resource carries a body of its own, which
// decides whether create/replace operations take a request body and
// whether property paths are generated.
func (r *ResourceDefinition) HasBody() bool {
	return r.Type != "" || r.Properties != nil
}

// BodyRequired reports whether the resource body lists required members.
func (r *ResourceDefinition) BodyRequired() bool {
	_, ok := r.Raw["required"]
	return ok
}

// MimeType returns vnd.ms.{family}.{name}.v{version}. Slashes in the family
// become underscores.
func (r *ResourceDefinition) MimeType(family string) string {
	return fmt.Sprintf("vnd.ms.%s.%s.v%s", strings.ReplaceAll(family, "/", "_"), r.Name, r.Version)
}

// VersionSuffix is the operationId suffix derived from the version:
// "3.4.1" becomes "v3_4_1".
func (r *ResourceDefinition) VersionSuffix() string {
	return "v" + strings.ReplaceAll(r.Version, ".", "_")
}
