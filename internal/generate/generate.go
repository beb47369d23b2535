// Package generate описывает способность генерации изображений и её обвязку:
// интерфейс Generator, контейнер Artifact, синтетический шум на входе
// и кодирование результата в wire-формат.
//
// Сам inference (диффузионная модель) — внешний collaborator; пакет лишь
// тонко оборачивает его вызов.
package generate

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"math"
	"math/rand"
)

// Artifact — массивоподобный результат генерации (или её вход):
// плоские данные плюс дескриптор формы.
type Artifact struct {
	Data  []float32
	Shape []int
}

// Len возвращает число элементов, заданное формой.
func (a *Artifact) Len() int {
	if len(a.Shape) == 0 {
		return 0
	}
	n := 1
	for _, dim := range a.Shape {
		n *= dim
	}
	return n
}

// Generator — способность генерации артефакта из шума.
// Одна запись реестра на категорию; может завершиться произвольной ошибкой.
type Generator interface {
	Generate(ctx context.Context, noise *Artifact) (*Artifact, error)
}

// Noise возвращает синтетический вход фиксированной формы:
// значения из N(0, 1), как подаёт модели оригинальный pipeline.
func Noise(shape ...int) *Artifact {
	a := &Artifact{Shape: shape}
	a.Data = make([]float32, a.Len())
	for i := range a.Data {
		a.Data[i] = float32(rand.NormFloat64())
	}
	return a
}

// Encode кодирует артефакт в wire-формат: little-endian байты float32,
// завёрнутые в base64, плюс дескриптор формы. Чистое преобразование
// без состояния.
func Encode(a *Artifact) (string, []int) {
	raw := make([]byte, len(a.Data)*4)
	for i, v := range a.Data {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(raw), a.Shape
}
