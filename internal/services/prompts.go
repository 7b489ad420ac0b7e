package services

// Default instructions sent to the generative model. Each one can be replaced
// through the environment (see LoadConfig) to match the UI locale.

// DefaultTranscribePrompt is sent with every image embedded in a PDF.
const DefaultTranscribePrompt = "Transcribe only the text present in this image:"

// DefaultScanPrompt is sent with a whole preprocessed scan.
const DefaultScanPrompt = "What is written here? Only transcribe the text without commenting on anything."

// DefaultRestructurePrompt is sent with the merged text of a PDF.
const DefaultRestructurePrompt = "Restructure the following text extracted from a PDF, keeping the line breaks and the original structure:"
