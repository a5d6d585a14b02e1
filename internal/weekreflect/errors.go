package weekreflect

import "fmt"

// DataCollectionFailedError is returned when no source produced data.
type DataCollectionFailedError struct {
	Source  string
	Message string
	Err     error
}

func (e *DataCollectionFailedError) Error() string {
	return fmt.Sprintf("data collection failed (%s): %s", e.Source, e.Message)
}

func (e *DataCollectionFailedError) Unwrap() error {
	return e.Err
}
