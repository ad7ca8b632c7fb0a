package pipeline

import (
	"context"
	"sync"

	"anajobs/packages/extractor"
	"anajobs/packages/fetcher"
)

// fetchPageSource lazily fetches the career root page and hands parsed pages
// to the heuristic strategy. The root fetch happens at most once.
type fetchPageSource struct {
	fetcher   *fetcher.Fetcher
	careerURL string

	once sync.Once
	page *extractor.ParsedPage
}

func newPageSource(f *fetcher.Fetcher, careerURL string) *fetchPageSource {
	return &fetchPageSource{fetcher: f, careerURL: careerURL}
}

func (s *fetchPageSource) CareerPage(ctx context.Context) *extractor.ParsedPage {
	s.once.Do(func() {
		page, err := s.fetcher.Fetch(ctx, s.careerURL)
		if err != nil || page.IsNonHTML || page.Doc == nil {
			return
		}
		s.page = &extractor.ParsedPage{
			URL:      page.FinalURL,
			Doc:      page.Doc,
			Text:     page.TextContent,
			Language: page.Language,
		}
	})
	return s.page
}

func (s *fetchPageSource) FollowLink(ctx context.Context, url string) (*extractor.ParsedPage, error) {
	page, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if page.IsNonHTML || page.Doc == nil {
		return nil, nil
	}
	return &extractor.ParsedPage{
		URL:      page.FinalURL,
		Doc:      page.Doc,
		Text:     page.TextContent,
		Language: page.Language,
	}, nil
}
