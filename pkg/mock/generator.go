package mock

//go:generate mockgen -destination scorer_mock.gen.go -package mock github.com/instill-ai/breed-recognition/pkg/scorer Scorer
//go:generate mockgen -destination submitter_mock.gen.go -package mock github.com/instill-ai/breed-recognition/pkg/feedback Submitter
