// Package sentiment classifies short English texts as Positive or Negative
// using a model artifact produced by "sentiment train".
//
// Quick start:
//
//	s, err := sentiment.New(sentiment.WithModelPath("models/sentiment.model.gz"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	res, _ := s.Classify(ctx, "I love this spaghetti.")
//	fmt.Println(res.Sentiment(), res.Probability) // Positive 0.87...
//
// A Sentiment is safe for concurrent use. Create once, reuse across
// requests.
package sentiment
