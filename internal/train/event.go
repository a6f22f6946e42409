package train

// EventKind identifies a progress event.
type EventKind int

// Progress events, in the order a run produces them.
const (
	BatchDone EventKind = iota
	EpochDone
	CheckpointSaved
	Finished
)

func (k EventKind) String() string {
	switch k {
	case BatchDone:
		return "batch"
	case EpochDone:
		return "epoch"
	case CheckpointSaved:
		return "checkpoint"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Event reports training progress. Epoch and Batch are 1-based.
type Event struct {
	Kind    EventKind
	Epoch   int
	Epochs  int
	Batch   int
	Batches int

	Loss     float64 // BatchDone
	Accuracy float64 // BatchDone

	Result EpochResult // EpochDone
	Path   string      // CheckpointSaved
}
