//go:build windows

package diagnostic

import "github.com/cockroachdb/errors"

func diskSpace(path string) (free, total uint64, err error) {
	return 0, 0, errors.New("disk space reporting not implemented on windows")
}
