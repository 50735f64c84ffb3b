package entities

// ToolSpec describes one external tool jar and how to acquire it.
//
// URL and ArchiveInnerPath may contain a "{version}" placeholder filled in
// from VersionSource ("static:<v>" or "github-release:<owner>/<repo>")
// before download. SHA256 and SignatureURL are optional integrity checks
// applied to the downloaded bytes before the tool is installed.
type ToolSpec struct {
	Name string
	// JarName is the cached filename under the tool's cache directory.
	JarName string
	URL     string
	// ArchiveInnerPath locates the jar inside a tar.gz download; empty for
	// direct jar downloads.
	ArchiveInnerPath string
	VersionSource    string
	SHA256           string
	SignatureURL     string
	PublicKeyPath    string
	// Args is the invocation template; "{in}" and "{out}" are replaced per
	// call. The output placeholder is absent for tools that take a
	// directory flag instead.
	Args []string
}
