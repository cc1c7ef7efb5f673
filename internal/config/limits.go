package config

import "time"

const (
	// MaxNodeNameLength is the maximum length for file and folder names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255) and provide
	// reasonable UX (names should be short and descriptive).
	MaxNodeNameLength = 255

	// MaxBranchNameLength is the maximum length for repository branch names.
	MaxBranchNameLength = 100

	// MaxNodePathLength is the maximum length for full node paths.
	// Longer paths indicate overly deep hierarchies (anti-pattern).
	MaxNodePathLength = 2000

	// DefaultClipboardTTL is how long a clipboard operation stays active
	// before it is lazily discarded.
	DefaultClipboardTTL = 24 * time.Hour

	// MaxArchiveEntries caps the number of entries accepted from a single
	// uploaded zip, bounding decompression work.
	MaxArchiveEntries = 10_000

	// MaxArchiveEntrySize caps the decompressed size of a single zip entry
	// (guards against zip bombs).
	MaxArchiveEntrySize = 256 << 20 // 256 MiB

	// MaxUploadSize caps a single multipart file upload.
	MaxUploadSize = 512 << 20 // 512 MiB
)
