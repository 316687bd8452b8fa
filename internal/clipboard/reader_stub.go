//go:build !linux && !windows && !darwin

package clipboard

func newPlatformReader() (Reader, error) {
	return nil, ErrUnsupportedPlatform
}
