package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dbsmedya/abridge/internal/schema"
)

func TestMergeRelations_GlobalThenSubjectOrderPreserved(t *testing.T) {
	fkA := &schema.ForeignKey{SrcTable: "posts", SrcCols: []string{"user_id"}, DstTable: "users", DstCols: []string{"id"}}
	fkB := &schema.ForeignKey{SrcTable: "comments", SrcCols: []string{"post_id"}, DstTable: "posts", DstCols: []string{"id"}}

	global := []Relation{{Table: "posts", Kind: KindOutgoingFK, FK: fkA, PropagateSticky: true}}
	subject := []Relation{{Table: "comments", Kind: KindOutgoingFK, FK: fkB}}

	merged := MergeRelations(global, subject)

	assert.Len(t, merged, 2)
	assert.Equal(t, fkA, merged[0].FK)
	assert.Equal(t, fkB, merged[1].FK)
}

func TestMergeRelations_SameEdgeORFoldsStickyFlags(t *testing.T) {
	fk := &schema.ForeignKey{SrcTable: "posts", SrcCols: []string{"user_id"}, DstTable: "users", DstCols: []string{"id"}}

	global := []Relation{{Table: "posts", Kind: KindOutgoingFK, FK: fk, PropagateSticky: true, OnlyIfSticky: false}}
	subject := []Relation{{Table: "posts", Kind: KindOutgoingFK, FK: fk, PropagateSticky: false, OnlyIfSticky: true}}

	merged := MergeRelations(global, subject)

	assert.Len(t, merged, 1)
	assert.True(t, merged[0].PropagateSticky)
	assert.True(t, merged[0].OnlyIfSticky)
}

func TestMergeRelations_OppositeDirectionsNotMerged(t *testing.T) {
	fkOut := &schema.ForeignKey{SrcTable: "posts", SrcCols: []string{"user_id"}, DstTable: "users", DstCols: []string{"id"}}

	rels := []Relation{
		{Table: "posts", Kind: KindOutgoingFK, FK: fkOut},
		{Table: "posts", Kind: KindIncomingFK, FK: fkOut},
	}

	merged := MergeRelations(rels)
	assert.Len(t, merged, 2)
}

func TestMergeRelations_WholeTableMergedByTableName(t *testing.T) {
	rels := []Relation{
		{Table: "tags", Kind: KindWholeTable, PropagateSticky: false},
		{Table: "tags", Kind: KindWholeTable, PropagateSticky: true},
	}

	merged := MergeRelations(rels)
	assert.Len(t, merged, 1)
	assert.True(t, merged[0].PropagateSticky)
}
