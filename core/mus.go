package core

import (
	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for the persisted domain types. They keep
// the XxxMUS serializer-object shape so storage call sites read the same
// as with generated code.
var (
	IDMUS       = idMUS{}
	KindMUS     = kindMUS{}
	JobStateMUS = jobStateMUS{}
	DocumentMUS = documentMUS{}
	BatchJobMUS = batchJobMUS{}
)

var (
	_ mus.Serializer[ID]       = IDMUS
	_ mus.Serializer[Document] = DocumentMUS
	_ mus.Serializer[BatchJob] = BatchJobMUS
)

// timeMUS stores timestamps as Unix microseconds.
var timeMUS = raw.TimeUnixMicroUTC

// vectorMUS stores embedding vectors as length-prefixed float32 slices.
var vectorMUS = ord.NewSliceSer[float32](raw.Float32)

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) int { return varint.Uint64.Marshal(uint64(v), bs) }

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(v ID) int { return varint.Uint64.Size(uint64(v)) }

func (idMUS) Skip(bs []byte) (int, error) { return varint.Uint64.Skip(bs) }

type kindMUS struct{}

func (kindMUS) Marshal(v Kind, bs []byte) int { return varint.Int.Marshal(int(v), bs) }

func (kindMUS) Unmarshal(bs []byte) (Kind, int, error) {
	v, n, err := varint.Int.Unmarshal(bs)
	return Kind(v), n, err
}

func (kindMUS) Size(v Kind) int { return varint.Int.Size(int(v)) }

func (kindMUS) Skip(bs []byte) (int, error) { return varint.Int.Skip(bs) }

type jobStateMUS struct{}

func (jobStateMUS) Marshal(v JobState, bs []byte) int { return varint.Int.Marshal(int(v), bs) }

func (jobStateMUS) Unmarshal(bs []byte) (JobState, int, error) {
	v, n, err := varint.Int.Unmarshal(bs)
	return JobState(v), n, err
}

func (jobStateMUS) Size(v JobState) int { return varint.Int.Size(int(v)) }

func (jobStateMUS) Skip(bs []byte) (int, error) { return varint.Int.Skip(bs) }

type documentMUS struct{}

func (s documentMUS) Marshal(v Document, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.Contents, bs[n:])
	n += timeMUS.Marshal(v.PublishedAt, bs[n:])
	n += timeMUS.Marshal(v.InsertedAt, bs[n:])
	n += timeMUS.Marshal(v.UpdatedAt, bs[n:])
	n += ord.String.Marshal(v.Summary, bs[n:])
	n += ord.String.Marshal(v.SummaryModel, bs[n:])
	n += timeMUS.Marshal(v.SummarizedAt, bs[n:])
	n += ord.String.Marshal(v.SummaryError, bs[n:])
	n += vectorMUS.Marshal(v.Vector, bs[n:])
	n += ord.String.Marshal(v.EmbeddingModel, bs[n:])
	n += timeMUS.Marshal(v.EmbeddedAt, bs[n:])
	n += ord.String.Marshal(v.EmbeddingError, bs[n:])
	return n
}

func (s documentMUS) Unmarshal(bs []byte) (v Document, n int, err error) {
	var n1 int
	if v.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if v.Title, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Contents, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.PublishedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.InsertedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.UpdatedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Summary, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.SummaryModel, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.SummarizedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.SummaryError, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Vector, n1, err = vectorMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.EmbeddingModel, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.EmbeddedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.EmbeddingError, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	return v, n, nil
}

func (s documentMUS) Size(v Document) (size int) {
	size = IDMUS.Size(v.Id)
	size += ord.String.Size(v.Title)
	size += ord.String.Size(v.Contents)
	size += timeMUS.Size(v.PublishedAt)
	size += timeMUS.Size(v.InsertedAt)
	size += timeMUS.Size(v.UpdatedAt)
	size += ord.String.Size(v.Summary)
	size += ord.String.Size(v.SummaryModel)
	size += timeMUS.Size(v.SummarizedAt)
	size += ord.String.Size(v.SummaryError)
	size += vectorMUS.Size(v.Vector)
	size += ord.String.Size(v.EmbeddingModel)
	size += timeMUS.Size(v.EmbeddedAt)
	size += ord.String.Size(v.EmbeddingError)
	return size
}

func (s documentMUS) Skip(bs []byte) (n int, err error) {
	skippers := []func([]byte) (int, error){
		IDMUS.Skip,
		ord.String.Skip, ord.String.Skip,
		timeMUS.Skip, timeMUS.Skip, timeMUS.Skip,
		ord.String.Skip, ord.String.Skip,
		timeMUS.Skip,
		ord.String.Skip,
		vectorMUS.Skip,
		ord.String.Skip,
		timeMUS.Skip,
		ord.String.Skip,
	}
	var n1 int
	for _, skip := range skippers {
		if n1, err = skip(bs[n:]); err != nil {
			return n + n1, err
		}
		n += n1
	}
	return n, nil
}

type batchJobMUS struct{}

func (s batchJobMUS) Marshal(v BatchJob, bs []byte) (n int) {
	n = ord.String.Marshal(v.Id, bs)
	n += KindMUS.Marshal(v.Kind, bs[n:])
	n += ord.String.Marshal(v.Model, bs[n:])
	n += JobStateMUS.Marshal(v.State, bs[n:])
	n += ord.String.Marshal(v.ArtifactPath, bs[n:])
	n += ord.String.Marshal(v.VendorBatchID, bs[n:])
	n += ord.String.Marshal(v.VendorInputFileID, bs[n:])
	n += ord.String.Marshal(v.VendorOutputFileID, bs[n:])
	n += ord.String.Marshal(v.VendorErrorFileID, bs[n:])
	n += varint.Int.Marshal(v.RequestCount, bs[n:])
	n += varint.Int.Marshal(v.CompletedCount, bs[n:])
	n += varint.Int.Marshal(v.FailedCount, bs[n:])
	n += varint.Int.Marshal(v.MergedCount, bs[n:])
	n += varint.Int.Marshal(v.MergeFailedCount, bs[n:])
	n += timeMUS.Marshal(v.CreatedAt, bs[n:])
	n += timeMUS.Marshal(v.SubmittedAt, bs[n:])
	n += timeMUS.Marshal(v.CompletedAt, bs[n:])
	n += timeMUS.Marshal(v.MergedAt, bs[n:])
	return n
}

func (s batchJobMUS) Unmarshal(bs []byte) (v BatchJob, n int, err error) {
	var n1 int
	if v.Id, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if v.Kind, n1, err = KindMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Model, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.State, n1, err = JobStateMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.ArtifactPath, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.VendorBatchID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.VendorInputFileID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.VendorOutputFileID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.VendorErrorFileID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.RequestCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.CompletedCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.FailedCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.MergedCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.MergeFailedCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.CreatedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.SubmittedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.CompletedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.MergedAt, n1, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	return v, n, nil
}

func (s batchJobMUS) Size(v BatchJob) (size int) {
	size = ord.String.Size(v.Id)
	size += KindMUS.Size(v.Kind)
	size += ord.String.Size(v.Model)
	size += JobStateMUS.Size(v.State)
	size += ord.String.Size(v.ArtifactPath)
	size += ord.String.Size(v.VendorBatchID)
	size += ord.String.Size(v.VendorInputFileID)
	size += ord.String.Size(v.VendorOutputFileID)
	size += ord.String.Size(v.VendorErrorFileID)
	size += varint.Int.Size(v.RequestCount)
	size += varint.Int.Size(v.CompletedCount)
	size += varint.Int.Size(v.FailedCount)
	size += varint.Int.Size(v.MergedCount)
	size += varint.Int.Size(v.MergeFailedCount)
	size += timeMUS.Size(v.CreatedAt)
	size += timeMUS.Size(v.SubmittedAt)
	size += timeMUS.Size(v.CompletedAt)
	size += timeMUS.Size(v.MergedAt)
	return size
}

func (s batchJobMUS) Skip(bs []byte) (n int, err error) {
	skippers := []func([]byte) (int, error){
		ord.String.Skip,
		KindMUS.Skip,
		ord.String.Skip,
		JobStateMUS.Skip,
		ord.String.Skip, ord.String.Skip, ord.String.Skip, ord.String.Skip, ord.String.Skip,
		varint.Int.Skip, varint.Int.Skip, varint.Int.Skip, varint.Int.Skip, varint.Int.Skip,
		timeMUS.Skip, timeMUS.Skip, timeMUS.Skip, timeMUS.Skip,
	}
	var n1 int
	for _, skip := range skippers {
		if n1, err = skip(bs[n:]); err != nil {
			return n + n1, err
		}
		n += n1
	}
	return n, nil
}
