package scope

import "fmt"

// UndefinedReferenceError is returned when a required lookup finds no
// binding.
type UndefinedReferenceError struct {
	Name  string
	Scope ID
}

func (e *UndefinedReferenceError) Error() string {
	return fmt.Sprintf("%s is not defined", e.Name)
}

// RedeclarationError is returned when Define would rebind a name in the
// same scope outside the var/var case.
type RedeclarationError struct {
	Name     string
	Scope    ID
	Existing DeclKind
	Kind     DeclKind
}

func (e *RedeclarationError) Error() string {
	return fmt.Sprintf("scope: cannot redeclare %q as %s in scope %d: already declared as %s",
		e.Name, e.Kind, e.Scope, e.Existing)
}
