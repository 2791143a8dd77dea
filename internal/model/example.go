package model

// Example is a labeled record used for training and evaluation.
type Example struct {
	Text  string
	Label bool // true = positive sentiment
}

// Input is a single unlabeled record submitted for prediction.
type Input struct {
	Text string
}
