package badger

// Database Key Namespace Design
// ==============================
//
// Every storage path owns up to two keys:
//
// Data Type   Prefix   Key Format      Value Type
// ===============================================
// Metadata    "m:"     m:<path>        record (JSON)
// Contents    "c:"     c:<path>        raw bytes
//
// Directories created explicitly have a metadata record of type "dir" and no
// contents key. Parents of stored entries exist implicitly; they are derived
// from key prefixes during listings and existence checks.
//
// Because paths are normalized (no leading or trailing "/"), a prefix scan on
// "m:<dir>/" visits exactly the entries below <dir>, never siblings such as
// "<dir>-other".

const (
	prefixMeta     = "m:"
	prefixContents = "c:"
)

func keyMeta(path string) []byte {
	return []byte(prefixMeta + path)
}

func keyContents(path string) []byte {
	return []byte(prefixContents + path)
}

// keyMetaChildren returns the scan prefix for every entry below dir.
func keyMetaChildren(dir string) []byte {
	if dir == "" {
		return []byte(prefixMeta)
	}
	return []byte(prefixMeta + dir + "/")
}

// keyContentsChildren returns the scan prefix for every content key below dir.
func keyContentsChildren(dir string) []byte {
	if dir == "" {
		return []byte(prefixContents)
	}
	return []byte(prefixContents + dir + "/")
}

// pathFromMetaKey strips the namespace prefix.
func pathFromMetaKey(key []byte) string {
	return string(key[len(prefixMeta):])
}
