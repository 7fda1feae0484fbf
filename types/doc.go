// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
包 types 定义 parley 编排核心共享的数据模型：AgentRequest、AgentResult、
ExecutionPlan、DegradationState 与 SynthesisResult，以及统一的错误结构。

# 概述

一次编排运行（run）将一个问题分解为若干角色视角的 AgentRequest，按
ExecutionPlan 选定的并发形态派发，结果以 AgentResult 按请求标识聚合，
最终合成 SynthesisResult。DegradationState 记录运行期的降级阶段，
只能单调前进，不可回退。

# 不变量

  - 每个提交的 AgentRequest 在运行结束时恰好对应一个 AgentResult；
    未执行的请求以 StatusSkipped 记录，绝不缺失。
  - ExecutionPlan 是值类型：降级产生新计划取代旧计划，从不原地修改。
  - DegradationState 的阶段转换单调：Normal → ReducedConcurrency →
    ReducedScope → Emergency，同一运行内不可逆。

本包只含纯数据与纯函数，不依赖任何外部服务。
*/
package types
