package registry

import (
	"encoding/json"
	"os"
)

// cargoVCSInfo mirrors the `.cargo_vcs_info.json` file cargo embeds in a
// published `.crate` tarball, grounded on
// crates/release_plz_core/src/cargo_vcs_info.rs in original_source/.
type cargoVCSInfo struct {
	Git struct {
		SHA1 string `json:"sha1"`
	} `json:"git"`
}

// ReadVCSInfoSHA reads the git commit SHA embedded in a package's
// `.cargo_vcs_info.json`, returning "" if the file is absent or malformed
// (this is advisory metadata, never load-bearing on its own).
func ReadVCSInfoSHA(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var info cargoVCSInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return ""
	}
	return info.Git.SHA1
}
