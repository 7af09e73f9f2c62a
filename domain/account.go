package domain

// AccountInfo summarizes the remote storage account for the /status command.
// Backends that cannot report quota fall back to placeholder values rather
// than failing the command.
type AccountInfo struct {
	Email      string
	SpaceUsed  int64
	SpaceTotal int64
	Connection string
}

func (a AccountInfo) SpaceFree() int64 {
	if a.SpaceTotal < a.SpaceUsed {
		return 0
	}
	return a.SpaceTotal - a.SpaceUsed
}
