package paths

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadEnv reads ./.env, then the .env file of the config dir. Variables
// already set in the environment win; missing files are skipped. Call it
// before anything resolves a directory so TABTREE_* set in ./.env apply.
func LoadEnv() error {
	var errs []error
	for _, f := range []string{".env", EnvPath()} {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("load %s: %w", f, err))
		}
	}
	return errors.Join(errs...)
}
