package builtin

import (
	"github.com/d5/tengo/v2"
	"github.com/google/uuid"

	"github.com/nfrund/scripthost/internal/modules"
)

// IDs returns the deferred "ids" capability: UUID generation for guest code.
func IDs() modules.Factory {
	return func(r modules.Resolver) (any, error) {
		return map[string]any{
			"uuid": tengo.CallableFunc(func(args ...tengo.Object) (tengo.Object, error) {
				if len(args) != 0 {
					return nil, tengo.ErrWrongNumArguments
				}
				return &tengo.String{Value: uuid.NewString()}, nil
			}),
		}, nil
	}
}
