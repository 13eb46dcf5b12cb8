package author

// Clone returns a deep copy of a.
func (a *Author) Clone() *Author {
	clone := New(a.ID)
	clone.Merge(a)

	return clone
}
