//go:build !unix

package relocate

func isCrossDevice(error) bool {
	return false
}
