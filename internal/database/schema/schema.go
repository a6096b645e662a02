package schema

import (
	"fmt"

	"gorm.io/gorm"

	"gueststay/internal/eventstore"
	"gueststay/internal/repository"
)

// Models lists every table the service owns: the event log first, then the
// read model.
func Models() []any {
	return append([]any{&eventstore.EventRecord{}}, repository.Models()...)
}

func Migrate(db *gorm.DB) error {
	for _, model := range Models() {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("migrate %T: %w", model, err)
		}
	}
	return nil
}
