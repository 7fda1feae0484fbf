// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
包 llm 提供补全客户端适配器：将外部无状态补全原语
（一个 prompt → response 的黑盒函数）包装为带单调用超时、
限流与可选缓存的 Completer。

# 契约

  - 每次 Complete 恰好调用原语一次（缓存命中除外）。
  - 超时即放弃：底层服务可能仍在执行，但其结果被丢弃，
    对编排器而言是"至多观测一次"语义。
  - 适配器从不返回 Go error —— 任何失败都被吸收进 CallResult
    的 Status 字段（TimedOut / ServiceError）。

# 使用方式

	adapter := llm.NewAdapter(completeFn, llm.AdapterConfig{}, logger)
	res := adapter.Complete(ctx, "prompt", 5*time.Second)
	if res.Status == types.StatusSuccess {
	    fmt.Println(res.Text)
	}
*/
package llm
