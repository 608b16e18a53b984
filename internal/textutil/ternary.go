package textutil

// Ternary picks between two values on a condition, for the one-line cases
// where an if/else block would drown the surrounding code.
func Ternary[T any](cond bool, whenTrue, whenFalse T) T {
	if cond {
		return whenTrue
	}
	return whenFalse
}
