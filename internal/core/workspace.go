package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that a workspace has everything needed to call its platform
func (w Workspace) Validate() error {
	if err := validate.Struct(w); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid workspace %q: %s", w.ID, strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid workspace %q: %w", w.ID, err)
	}
	return nil
}
