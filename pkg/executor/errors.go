package executor

import (
	"fmt"

	"github.com/dbrevel/queryplane/pkg/model"
)

func errNoAdapterFor(database string) error {
	return fmt.Errorf("no adapter available for database %q", database)
}

func errUnsupportedKind(kind model.DatabaseKind) error {
	return fmt.Errorf("unsupported query kind %q", kind)
}
