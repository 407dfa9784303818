package registry

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultNamespace подставляется, если в идентификаторе нет пространства имён.
const DefaultNamespace = "minecraft"

// Separator разделяет пространство имён и путь.
const Separator = ":"

// ErrInvalidIdentifier возвращается при неверном формате идентификатора.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// Identifier представляет идентификатор вида namespace:path.
type Identifier struct {
	Namespace string
	Path      string
}

// String возвращает каноническую форму namespace:path
func (id Identifier) String() string {
	return id.Namespace + Separator + id.Path
}

// IsZero сообщает, что идентификатор пуст
func (id Identifier) IsZero() bool {
	return id.Namespace == "" && id.Path == ""
}

// ParseIdentifier разбирает строку по правилам resource location:
// "stone" равно "minecraft:stone", пространство имён из [a-z0-9_.-],
// путь из [a-z0-9_.-/].
func ParseIdentifier(s string) (Identifier, error) {
	if s == "" {
		return Identifier{}, fmt.Errorf("%w: empty string", ErrInvalidIdentifier)
	}

	id := SplitIdentifier(s)
	if id.Path == "" {
		return Identifier{}, fmt.Errorf("%w: %q has empty path", ErrInvalidIdentifier, s)
	}
	for _, r := range id.Namespace {
		if !isNamespaceRune(r) {
			return Identifier{}, fmt.Errorf("%w: %q has illegal namespace character %q", ErrInvalidIdentifier, s, r)
		}
	}
	for _, r := range id.Path {
		if !isPathRune(r) {
			return Identifier{}, fmt.Errorf("%w: %q has illegal path character %q", ErrInvalidIdentifier, s, r)
		}
	}
	return id, nil
}

// MustParseIdentifier как ParseIdentifier, но паникует при ошибке.
// Используется для констант и тестов.
func MustParseIdentifier(s string) Identifier {
	id, err := ParseIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

// SplitIdentifier делит строку по первому разделителю без проверки символов.
// Без разделителя или с пустым пространством имён используется DefaultNamespace.
func SplitIdentifier(s string) Identifier {
	ns, path, found := strings.Cut(s, Separator)
	if !found {
		return Identifier{Namespace: DefaultNamespace, Path: s}
	}
	if ns == "" {
		ns = DefaultNamespace
	}
	return Identifier{Namespace: ns, Path: path}
}

func isNamespaceRune(r rune) bool {
	return r == '_' || r == '-' || r == '.' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

func isPathRune(r rune) bool {
	return isNamespaceRune(r) || r == '/'
}
