package dataset

import (
	"fmt"
	"strings"
)

// Source selects a dataset and where to find it.
type Source struct {
	Name  string // MNIST, CIFAR10, CIFAR100, or synthetic
	Dir   string
	Limit int // 0 loads everything

	// Synthetic sets only.
	Channels int
	Size     int
	Classes  int
	Seed     int64
}

// Load returns the train or test split named by src.
func Load(src Source, train bool) (*Images, error) {
	switch strings.ToLower(src.Name) {
	case "mnist":
		return LoadMNIST(src.Dir, train, src.Limit)
	case "cifar10":
		return LoadCIFAR(src.Dir, 10, train, src.Limit)
	case "cifar100":
		return LoadCIFAR(src.Dir, 100, train, src.Limit)
	case "synthetic":
		n := src.Limit
		if n <= 0 {
			n = 512
		}
		seed := src.Seed
		if !train {
			seed++
		}
		return Synthetic(n, src.Channels, src.Size, src.Classes, seed), nil
	default:
		return nil, fmt.Errorf("unknown dataset source %q", src.Name)
	}
}
