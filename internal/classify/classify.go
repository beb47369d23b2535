// Package classify подбирает наиболее релевантную категорию для
// свободного текста через внешний сервис текстовой близости.
//
// Это nearest-neighbor классификатор над небольшим фиксированным набором
// категорий: без обучения, без состояния, чистое вычисление на каждый вызов.
package classify

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNoMatch — ни одна категория не прошла порог близости.
var ErrNoMatch = errors.New("no category matched")

// Similarity — результат сравнения пары текстов.
// Distance — метрика непохожести: 0 — тексты идентичны.
type Similarity struct {
	Similar  bool
	Distance float64
}

// Comparer — внешняя способность сравнения пары текстов.
type Comparer interface {
	Compare(ctx context.Context, a, b string) (Similarity, error)
}

// Classifier выбирает ближайшую категорию для входного текста.
type Classifier struct {
	comparer Comparer
	logger   *slog.Logger
}

// NewClassifier создаёт классификатор поверх comparer.
func NewClassifier(comparer Comparer, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{comparer: comparer, logger: logger}
}

// Classify возвращает категорию с наименьшей дистанцией среди тех, что
// comparer пометил похожими. Категории проверяются в заданном порядке;
// при равной дистанции побеждает первая. Стартовый порог — 1.0: побеждает
// только строго меньшая дистанция.
//
// ErrNoMatch — ни одна категория не подошла. Ошибка comparer прерывает
// перебор и возвращается как есть.
func (c *Classifier) Classify(ctx context.Context, categories []string, text string) (string, error) {
	best := 1.0
	relevant := ""

	for _, category := range categories {
		sim, err := c.comparer.Compare(ctx, category, text)
		if err != nil {
			return "", err
		}

		c.logger.Debug("compared category",
			"category", category,
			"similar", sim.Similar,
			"distance", sim.Distance,
		)

		if sim.Similar && sim.Distance < best {
			best = sim.Distance
			relevant = category
		}
	}

	if relevant == "" {
		return "", ErrNoMatch
	}

	return relevant, nil
}
