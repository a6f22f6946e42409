package config

// YAMLRun is the on-disk layout of a run file.
type YAMLRun struct {
	Model      YAMLModel      `yaml:"model"`
	Data       YAMLData       `yaml:"data"`
	Train      YAMLTrain      `yaml:"train"`
	Checkpoint YAMLCheckpoint `yaml:"checkpoint"`
	Workers    int            `yaml:"workers"`
}

type YAMLModel struct {
	Arch        string  `yaml:"arch"`
	ARMA        *bool   `yaml:"arma"`
	Dataset     string  `yaml:"dataset"`
	RFInit      float32 `yaml:"rf_init"`
	WKernelSize *int    `yaml:"w_kernel_size"`
	AKernelSize *int    `yaml:"a_kernel_size"`
}

type YAMLData struct {
	Source    string `yaml:"source"`
	Dir       string `yaml:"dir"`
	Limit     int    `yaml:"limit"`
	TestLimit int    `yaml:"test_limit"`
	ImageSize int    `yaml:"image_size"`
	Seed      int64  `yaml:"seed"`
}

type YAMLTrain struct {
	Epochs    int           `yaml:"epochs"`
	BatchSize int           `yaml:"batch_size"`
	Seed      *int64        `yaml:"seed"`
	Optimizer YAMLOptimizer `yaml:"optimizer"`
	Schedule  YAMLSchedule  `yaml:"schedule"`
}

type YAMLOptimizer struct {
	Name        string   `yaml:"name"`
	LR          *float32 `yaml:"lr"`
	Momentum    *float32 `yaml:"momentum"`
	WeightDecay *float32 `yaml:"weight_decay"`
}

type YAMLSchedule struct {
	Name     string  `yaml:"name"`
	StepSize int     `yaml:"step_size"`
	Gamma    float32 `yaml:"gamma"`
	MinLR    float32 `yaml:"min_lr"`
}

type YAMLCheckpoint struct {
	Dir    string `yaml:"dir"`
	Every  int    `yaml:"every"`
	Resume string `yaml:"resume"`
}
