package model

import (
	"encoding/json"
	"errors"
)

// AnswerValue 答案值的带标签变体：单选/判断/填空题为单个字符串，匹配题为字符串集合。
// JSON 编码为裸字符串或字符串数组，避免在业务逻辑中传递无类型联合。
type AnswerValue struct {
	Single string
	Multi  []string
	IsSet  bool
}

func SingleAnswer(v string) AnswerValue {
	return AnswerValue{Single: v}
}

func SetAnswer(vs ...string) AnswerValue {
	return AnswerValue{Multi: vs, IsSet: true}
}

func (v AnswerValue) IsEmpty() bool {
	if v.IsSet {
		return len(v.Multi) == 0
	}
	return v.Single == ""
}

// MatchesType 校验答案形状是否与题型匹配
func (v AnswerValue) MatchesType(t QuestionType) bool {
	if t == QuestionMatching {
		return v.IsSet
	}
	return !v.IsSet
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	if v.IsSet {
		if v.Multi == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(v.Multi)
	}
	return json.Marshal(v.Single)
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v.Single = s
		v.Multi = nil
		v.IsSet = false
		return nil
	}
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		v.Single = ""
		v.Multi = ss
		v.IsSet = true
		return nil
	}
	return errors.New("answer value must be a string or an array of strings")
}
