package model

// Configuration is the startup shape supplied by the packaging descriptor
// (spec §6). The descriptor itself is read by external bootstrapping glue
// (out of scope); this module only defines and validates its shape.
type Configuration struct {
	Version         string   `json:"version"`
	PublicKeys      []string `json:"publicKeys"`
	Manifests       []string `json:"manifests"`
	Nightly         bool     `json:"nightly"`
	AllowPrerelease bool     `json:"allowPrerelease"`
	DownloadsDir    string   `json:"downloadsDir,omitempty"`
	AllowMajorJump  bool     `json:"allowMajorJump,omitempty"`
	AutoInstall     bool     `json:"autoInstall,omitempty"`
	// MinisignPublicKey verifies the optional "<platform>-minisig" sidecar
	// signature (SPEC_FULL supplemented feature #4); empty disables the check.
	MinisignPublicKey string `json:"minisignPublicKey,omitempty"`
}
