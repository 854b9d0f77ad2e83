package loghandler

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/Maizu/RLAccountMigrator/app/types"
	"github.com/Maizu/RLAccountMigrator/app/utils"
	"github.com/hpcloud/tail"
)

// LogFile returns the path of the combined log inside logDir.
func LogFile(logDir string) string {
	return filepath.Join(logDir, utils.CombinedLogName)
}

// Follow copies the lines of filePath to w. With follow set it keeps waiting
// for new lines, surviving truncation and rotation, until ctx is done.
func Follow(ctx context.Context, filePath string, w io.Writer, follow bool) error {
	if !follow && !utils.CheckFileExists(filePath) {
		return &types.NotFoundError{What: "log file", Path: filePath}
	}

	t, err := tail.TailFile(filePath, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: !follow,
		Poll:      true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return err
	}
	defer t.Cleanup()

	for {
		select {
		case <-ctx.Done():
			utils.DebugLogger.Printf("Stopping tail for %s\r\n", t.Filename)
			t.Stop()
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Wait()
			}
			if line.Err != nil {
				utils.ErrorLogger.Printf("Error reading line from %s: %v\r\n", filePath, line.Err)
				continue
			}
			if _, err := fmt.Fprintln(w, line.Text); err != nil {
				t.Stop()
				return err
			}
		}
	}
}
