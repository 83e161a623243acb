// Package cratesdl downloads a published `.crate` tarball so the
// package-diff resolver can compare its tree against the local worktree
// (spec.md §4.6 step 2).
//
// Grounded on crates/release_plz_core/src/download.rs in original_source/:
// the Rust original clones the published package into a scratch directory
// and reads it back as a cargo_metadata::Package; this Go port fetches the
// tarball over HTTP and extracts it with archive/tar + compress/gzip
// (stdlib — justified: none of the example repos imports a tar/gzip
// library, the cargo registry's `.crate` format is a plain gzipped tar,
// and stdlib's archive/tar + compress/gzip are the idiomatic, complete fit;
// there is no domain-specific third-party archive library to prefer here).
package cratesdl

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Download fetches name@version's `.crate` tarball from baseURL (a crates.io
// style download endpoint) and extracts it under destDir, returning the
// path to the extracted package root.
func Download(ctx context.Context, client *http.Client, baseURL, name, version, destDir string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	url := fmt.Sprintf("%s/api/v1/crates/%s/%s/download", strings.TrimRight(baseURL, "/"), name, version)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("cratesdl: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("cratesdl: download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cratesdl: %s returned %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("cratesdl: create dest dir: %w", err)
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("cratesdl: open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var root string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("cratesdl: read tar entry: %w", err)
		}

		target := filepath.Join(destDir, hdr.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return "", fmt.Errorf("cratesdl: tar entry escapes destination: %s", hdr.Name)
		}
		if root == "" {
			root = filepath.Join(destDir, strings.SplitN(hdr.Name, string(os.PathSeparator), 2)[0])
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return "", err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return "", err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return "", err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return "", err
			}
			f.Close()
		}
	}

	return root, nil
}
