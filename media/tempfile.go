package media

import (
	"os"
	"path/filepath"

	"github.com/gofrs/uuid"
	"github.com/jfk9w-go/flu"
)

// tempFile allocates a unique file path in the system temp directory.
// The file is not created; callers own the path and remove it when done.
func tempFile(suffix string) flu.File {
	return flu.File(filepath.Join(os.TempDir(), uuid.Must(uuid.NewV4()).String()+suffix))
}

func isDir(path flu.File) bool {
	stat, err := os.Stat(path.String())
	return err == nil && stat.IsDir()
}
