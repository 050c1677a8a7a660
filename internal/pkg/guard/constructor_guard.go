// Package guard provides ConstructorGuard, a marker embedded into value
// objects and commands so that zero values can be told apart from instances
// produced by their constructors.
package guard

import "errors"

// ErrDefaultConstructorGuard is returned by Validate when the caller passes a nil error.
var ErrDefaultConstructorGuard = errors.New("object must be created via its constructor")

// ConstructorGuard records whether the enclosing struct went through its constructor.
//
// Example:
//
//	type Allocation struct {
//	    weight float64
//	    guard  guard.ConstructorGuard
//	}
//
//	func NewAllocation(weight float64) (Allocation, error) {
//	    if weight <= 0 {
//	        return Allocation{}, errors.New("weight must be positive")
//	    }
//	    return Allocation{weight: weight, guard: guard.NewConstructorGuard()}, nil
//	}
//
//	func (a Allocation) Validate() error {
//	    return a.guard.Validate(ErrAllocationIsNotConstructed)
//	}
type ConstructorGuard struct {
	isConstructed bool
}

// NewConstructorGuard returns a guard marked as constructed.
func NewConstructorGuard() ConstructorGuard {
	return ConstructorGuard{isConstructed: true}
}

// Validate returns validationError (or ErrDefaultConstructorGuard when it is nil)
// if the guard is a zero value, and nil otherwise.
func (g ConstructorGuard) Validate(validationError error) error {
	if g.isConstructed {
		return nil
	}
	if validationError == nil {
		return ErrDefaultConstructorGuard
	}
	return validationError
}
