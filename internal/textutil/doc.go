// Package textutil sanitizes user-supplied strings before they become part of
// artifact names.
package textutil
